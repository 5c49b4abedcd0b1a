package log

const (
	DefaultPattern = "%time [%level] %field %msg"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

type LoggerConfig struct {
	Level   string          `mapstructure:"level"`
	Pattern string          `mapstructure:"pattern"`
	Time    string          `mapstructure:"time"`
	Console bool            `mapstructure:"console"`
	File    FileAppenderOpt `mapstructure:"file"`
}
