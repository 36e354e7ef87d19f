package main

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
}

// StartFlags holds launch mode flags and config overrides for the start
// command. Overrides beat environment variables and the config file.
type StartFlags struct {
	Foreground bool
	Reload     bool

	Host     string
	Port     int
	LogDir   string
	LogLevel string

	QGMHost      string
	QGMPort      int
	QGMUsername  string
	QGMPassword  string
	QGMVerifySSL bool
}

// StatusFlags holds flags for the status command.
type StatusFlags struct {
	History int
}

// ServeFlags holds overrides for the serve command.
type ServeFlags struct {
	Host string
	Port int
}
