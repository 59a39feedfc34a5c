package clickhouse

// DeviceDataTableSQL creates the event log table.
const DeviceDataTableSQL = `
	CREATE TABLE IF NOT EXISTS device_data (
		id String,
		device_id String,
		data String,
		timestamp DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (device_id, timestamp)
	PARTITION BY toYYYYMM(timestamp)
`

// AllTables returns every table creation statement.
func AllTables() []string {
	return []string{
		DeviceDataTableSQL,
	}
}
