package config

const (
	DefaultTimeZone = "UTC"

	// Snapshot Job Constants
	DefaultSnapshotSchedule = "0 2 * * *"
	SnapshotBatchSize       = 500

	// Upload preview cache sweep
	DefaultCacheSweepSchedule = "*/10 * * * *"

	// Service ports
	DefaultGatewayPort = "8081"
	DefaultReportsPort = "7143"
)
