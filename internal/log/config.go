package log

const (
	OutputStdio = "stdio"
	OutputFile  = "file"

	EncodingJSON    = "json"
	EncodingConsole = "console"
)

type Config struct {
	// Name is attached to every entry as the logger name.
	Name string `conf:"name" yaml:"name" json:"name"`

	// Level is one of debug, info, warn, error, panic, fatal.
	Level string `conf:"level" yaml:"level" json:"level"`

	Encoding string `conf:"encoding" yaml:"encoding" json:"encoding"`

	// Output is stdio or file.
	Output string     `conf:"output" yaml:"output" json:"output"`
	File   FileConfig `conf:"file" yaml:"file" json:"file"`

	// Debug enables the development mode of zap (stack traces on warn, caller info).
	Debug bool `conf:"debug" yaml:"debug" json:"debug"`
}

// FileConfig controls the rotated log file when Output is file.
type FileConfig struct {
	Path       string `conf:"path" yaml:"path" json:"path"`
	MaxSize    int    `conf:"max_size" yaml:"max_size" json:"max_size"`
	MaxAge     int    `conf:"max_age" yaml:"max_age" json:"max_age"`
	MaxBackups int    `conf:"max_backups" yaml:"max_backups" json:"max_backups"`
	LocalTime  bool   `conf:"local_time" yaml:"local_time" json:"local_time"`
	Compress   bool   `conf:"compress" yaml:"compress" json:"compress"`
}

func DefaultConfig() Config {
	return Config{
		Name:     "webproxy",
		Level:    "info",
		Encoding: EncodingJSON,
		Output:   OutputStdio,
		File: FileConfig{
			Path:       "logs/webproxy.log",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 5,
			LocalTime:  true,
		},
	}
}
