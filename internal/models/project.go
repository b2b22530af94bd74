package models

// Project is an API client allowed to verify receipts. Each project carries
// its own App Store shared secret so verification calls for different apps
// never share credentials.
type Project struct {
	BaseModel
	ProjectID    string `json:"project_id" gorm:"uniqueIndex;not null"`
	ProjectName  string `json:"project_name" gorm:"not null"`
	APIKey       string `json:"-" gorm:"uniqueIndex;not null"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`
	Description  string `json:"description"`
	ContactEmail string `json:"contact_email"`

	// iOS bundle ID; verified receipts must match it when set
	BundleID string `json:"bundle_id" gorm:"index"`

	// App-specific shared secret sent as the verifyReceipt password
	SharedSecret string `json:"-" gorm:"type:varchar(255)"`

	// Default for exclude-old-transactions, nil means "not sent"
	ExcludeOldTransactions *bool `json:"exclude_old_transactions"`
}

// HasSharedSecret reports whether a shared secret is configured.
func (p *Project) HasSharedSecret() bool {
	return p.SharedSecret != ""
}
