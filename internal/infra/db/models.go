package db

import "time"

type CertificateModel struct {
	ID                  string `gorm:"primaryKey"`
	IssuerID            string `gorm:"not null"`
	SubjectID           string `gorm:"index;not null"`
	SubjectAttributes   []byte `gorm:"type:jsonb"`
	PublicKey           []byte `gorm:"type:bytea;not null"`
	Signature           []byte `gorm:"type:bytea;not null"`
	SignatureAlg        string `gorm:"not null"`
	ValidFrom           time.Time
	ValidUntil          time.Time
	Status              string `gorm:"index;not null"`
	ParentCertificateID *string
	Extensions          []byte `gorm:"type:jsonb"`
	Fingerprint         string `gorm:"not null"`
	RevocationReason    *string
	RevokedAt           *time.Time
	SuspendedAt         *time.Time
	CreatedAt           time.Time `gorm:"not null"`
}

func (CertificateModel) TableName() string { return "certificates" }

type IssuerModel struct {
	ID               string `gorm:"primaryKey"`
	Type             string `gorm:"not null"`
	TrustLevel       int    `gorm:"not null"`
	ParentID         *string
	Metadata         []byte `gorm:"type:jsonb"`
	Revoked          bool   `gorm:"not null"`
	RevocationReason *string
	RevokedAt        *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (IssuerModel) TableName() string { return "issuers" }

type RevocationModel struct {
	ID           string `gorm:"primaryKey"`
	CredentialID string `gorm:"uniqueIndex;not null"`
	IssuerID     *string
	Reason       string `gorm:"not null"`
	RevokedBy    *string
	Notes        *string
	StatusIndex  *int
	RevokedAt    time.Time `gorm:"not null"`
}

func (RevocationModel) TableName() string { return "revocations" }

type StatusIndexModel struct {
	CredentialID string    `gorm:"primaryKey"`
	StatusIndex  int       `gorm:"uniqueIndex;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (StatusIndexModel) TableName() string { return "status_list_indexes" }

type EventModel struct {
	Seq         int64  `gorm:"primaryKey;autoIncrement:false"`
	ID          string `gorm:"uniqueIndex;not null"`
	Type        string `gorm:"not null"`
	TargetType  string `gorm:"not null"`
	TargetID    string `gorm:"not null"`
	Actor       *string
	Payload     []byte    `gorm:"type:jsonb;not null"`
	PayloadHash string    `gorm:"not null"`
	PrevHash    string    `gorm:"not null"`
	Hash        string    `gorm:"not null"`
	OccurredAt  time.Time `gorm:"not null"`
}

func (EventModel) TableName() string { return "events" }
