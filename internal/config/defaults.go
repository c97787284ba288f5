package config

const (
	defaultQueueEndpoint      = "http://127.0.0.1:8085"
	defaultQueueProject       = "local"
	defaultQueueSubscription  = "shout-request-workers"
	defaultPullTimeout        = 45
	defaultRequestTimeout     = 10
	defaultRenewInterval      = 10
	defaultLeaseExtension     = 15
	defaultErrorRetryInterval = 5
	defaultCornFailureRate    = 0.5
	defaultTimeScale          = 1.0
	defaultLogDir             = "~/.local/share/shoutd/logs"
	defaultDataDir            = "~/.local/share/shoutd"
	defaultLogLevel           = "info"
	defaultLogFormat          = "auto"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Queue: Queue{
			Endpoint:       defaultQueueEndpoint,
			Project:        defaultQueueProject,
			Subscription:   defaultQueueSubscription,
			PullTimeout:    defaultPullTimeout,
			RequestTimeout: defaultRequestTimeout,
		},
		Status: Status{
			RequestTimeout: defaultRequestTimeout,
		},
		Worker: Worker{
			RenewInterval:      defaultRenewInterval,
			LeaseExtension:     defaultLeaseExtension,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Shout: Shout{
			Simulate:        true,
			CornFailureRate: defaultCornFailureRate,
			TimeScale:       defaultTimeScale,
		},
		Paths: Paths{
			LogDir:  defaultLogDir,
			DataDir: defaultDataDir,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
