package domain

import "time"

type Config struct {
	Addr            string
	AdminAddr       string
	TickRate        int
	SendBuffer      int
	WriteWait       time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
	HistoryDB       string
	RedisAddr       string
	RedisDB         int
	CORSOrigins     []string
	LogLevel        string
	LogFormat       string
}

func NewConfig() Config {
	return Config{
		Addr:            ":3000",
		AdminAddr:       ":3001",
		TickRate:        30,
		SendBuffer:      defaultSendBuffer,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		MaxMessageBytes: 64 << 10,
		CORSOrigins:     []string{"*"},
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// TickInterval is the broadcast period derived from TickRate.
func (c Config) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.TickRate)
}

// PingPeriod must stay below PongWait so a healthy peer always answers in time.
func (c Config) PingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}
