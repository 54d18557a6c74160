package models

// User - донор. Агрегаты обновляются только атомарными дельтами в леджере.
type User struct {
	BaseModel
	Name                string     `gorm:"type:varchar(120)" json:"name"`
	Email               string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Role                UserRole   `gorm:"type:varchar(20);not null;default:user" json:"role"`
	TotalDonations      int64      `gorm:"not null;default:0" json:"totalDonations"`
	TotalDonated        int64      `gorm:"not null;default:0" json:"totalDonated"` // minor units
	NeedsReconciliation bool       `gorm:"not null;default:false" json:"needsReconciliation"`
	Donations           []Donation `gorm:"foreignKey:UserID" json:"-"`
}
