package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateDistributionRequest struct {
	AssetID    string `json:"asset_id"`
	Kind       string `json:"kind"`
	AmountType string `json:"amount_type,omitempty"`
	Amount     string `json:"amount,omitempty"`
	RecordDate string `json:"record_date,omitempty"`
	PayoutAt   string `json:"payout_at"`
}

type DistributionDTO struct {
	ID         string `json:"id"`
	AssetID    string `json:"asset_id"`
	Kind       string `json:"kind"`
	AmountType string `json:"amount_type,omitempty"`
	Amount     string `json:"amount,omitempty"`
	RecordDate string `json:"record_date,omitempty"`
	PayoutAt   string `json:"payout_at"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type DistributionProgressResponse struct {
	Distribution DistributionDTO `json:"distribution"`
	BatchCount   int             `json:"batch_count"`
	HolderCounts map[string]int  `json:"holder_counts"`
}

type BatchPayoutDTO struct {
	ID              string `json:"id"`
	DistributionID  string `json:"distribution_id"`
	Name            string `json:"name"`
	TransactionID   string `json:"transaction_id"`
	TransactionHash string `json:"transaction_hash"`
	RecipientCount  int    `json:"recipient_count"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type HolderDTO struct {
	ID             string `json:"id"`
	BatchPayoutID  string `json:"batch_payout_id"`
	DistributionID string `json:"distribution_id"`
	AccountID      string `json:"account_id"`
	EVMAddress     string `json:"evm_address"`
	RetryCount     int    `json:"retry_count"`
	Status         string `json:"status"`
	NextRetryAt    string `json:"next_retry_at,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
	PaidAmount     string `json:"paid_amount,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type AcceptedResponse struct {
	DistributionID string `json:"distribution_id"`
	Status         string `json:"status"`
}
