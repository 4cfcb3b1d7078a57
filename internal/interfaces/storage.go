package interfaces

// StorageManager owns the database connection and the storages built on it
type StorageManager interface {
	SessionStorage() SessionStorage
	// DB returns the underlying store for diagnostics
	DB() interface{}
	Close() error
}
