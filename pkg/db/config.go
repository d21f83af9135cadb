package db

// Config holds connection settings for the shared gorm handle. DSN, when
// set, overrides the individual host/user fields and is passed to the
// driver verbatim.
type Config struct {
	Type            string
	DSN             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}
