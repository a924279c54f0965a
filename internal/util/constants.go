package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	MimeJSON = "application/json"
)

const (
	DefaultPage      = 1
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	HistoryLimit     = 30
)
