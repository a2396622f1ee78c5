package types

type Theme struct {
	ID    int64  `gorm:"primaryKey" json:"id"`
	Theme string `gorm:"uniqueIndex;not null;column:theme" json:"theme"`
}

func (Theme) TableName() string {
	return "themes"
}
