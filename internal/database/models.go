package database

import "time"

type APIKey struct {
	ID         string `gorm:"primaryKey"`
	Name       string `gorm:"not null"`
	Secret     string `gorm:"uniqueIndex;not null"`
	Providers  string `gorm:"not null"` // comma-separated, insertion order preserved
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	Active     bool `gorm:"not null;default:true"`
}

type ProviderConfig struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"uniqueIndex;not null"`
	Credential  string
	BaseURL     string
	RateLimit   int  `gorm:"not null;default:100"`
	TimeoutMs   int  `gorm:"not null;default:30000"`
	Configured  bool `gorm:"not null;default:false"`
	LastChecked *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

type UsageStat struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	KeyID          string    `gorm:"not null;uniqueIndex:idx_key_provider"`
	Provider       string    `gorm:"not null;uniqueIndex:idx_key_provider"`
	RequestCount   int64     `gorm:"not null;default:0"`
	SuccessCount   int64     `gorm:"not null;default:0"`
	ErrorCount     int64     `gorm:"not null;default:0"`
	TotalLatencyMs int64     `gorm:"not null;default:0"`
	LastUsedAt     time.Time `gorm:"not null;index"`
}
