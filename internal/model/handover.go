package model

// Handover は預かり品の受付記録（クロークチケット）を表す。
type Handover struct {
	ID           string
	TicketCode   string
	ClientName   string
	ClientPhone  string
	Notes        string // プレーンテキストにサニタイズ済み
	PhotoURLs    []string
	SignatureURL string
	StaffID      string // 受付した主体のID（管理者の場合は管理者ID）
	StaffName    string
	EventID      string
	CreatedAt    int64
	PrintedAt    *int64
	PrintCount   int
}

// HandoverFilter は受付記録一覧の絞り込み条件。
type HandoverFilter struct {
	EventID string
	StaffID string
	Limit   int
}
