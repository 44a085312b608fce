package domain

// Company is the demo aggregate served by the inspection API. All of its
// lifecycle actions are audited.
type Company struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Country   string `db:"country" json:"country"`
	Employees int64  `db:"employees" json:"employees"`
	Version   int64  `db:"version" json:"version"`
}

func (Company) TableName() string { return "companies" }

func (Company) AuditActions() Action { return ActionAll }

// User belongs to a company. It is not audited by default; callers that want
// a trail register it explicitly.
type User struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	CompanyID string `db:"company_id" json:"companyId"`
	Version   int64  `db:"version" json:"version"`
}

func (User) TableName() string { return "users" }
