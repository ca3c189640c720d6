package postersync

import "encoding/json"

type SyncModules struct {
	Spots        bool `json:"spots"`
	Products     bool `json:"products"`
	Clients      bool `json:"clients"`
	Transactions bool `json:"transactions"`
}

func DefaultModules() SyncModules {
	return SyncModules{
		Spots:        true,
		Products:     true,
		Clients:      true,
		Transactions: true,
	}
}

// NormalizeModules keeps the ordering barrier intact: transactions reference
// spots, products and clients, so syncing them alone would only produce
// unlinked rows.
func NormalizeModules(mod SyncModules) SyncModules {
	if mod.Transactions {
		mod.Spots = true
		mod.Products = true
		mod.Clients = true
	}
	return mod
}

func DecodeModules(raw []byte) SyncModules {
	if len(raw) == 0 {
		return DefaultModules()
	}
	var mod SyncModules
	if err := json.Unmarshal(raw, &mod); err != nil {
		return DefaultModules()
	}
	return NormalizeModules(mod)
}

func EncodeModules(mod SyncModules) []byte {
	b, _ := json.Marshal(NormalizeModules(mod))
	return b
}

type CursorState struct {
	ClientOffset     int64  `json:"client_offset"`
	TransactionsFrom string `json:"transactions_from"`
}

func DecodeCursorState(raw []byte) CursorState {
	if len(raw) == 0 {
		return CursorState{}
	}
	var state CursorState
	if err := json.Unmarshal(raw, &state); err != nil {
		return CursorState{}
	}
	return state
}

func EncodeCursorState(state CursorState) []byte {
	b, _ := json.Marshal(state)
	return b
}

type ConnectRequest struct {
	AccountName string `json:"accountName"`
	APIToken    string `json:"apiToken" validate:"required"`
}

type UpdateSettingsRequest struct {
	Modules SyncModules `json:"modules"`
}

type TriggerSyncRequest struct {
	Modules SyncModules `json:"modules"`
}

type AdjustBonusRequest struct {
	ClientId    int64  `json:"clientId"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type StatusResponse struct {
	Connection        ConnectionResponse `json:"connection"`
	LastSyncAt        *string            `json:"lastSyncAt"`
	LastSuccessSyncAt *string            `json:"lastSuccessSyncAt"`
	Modules           SyncModules        `json:"modules"`
}

type ConnectionResponse struct {
	Status      string `json:"status"`
	AccountName string `json:"accountName"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID            uint    `json:"id"`
	Status        string  `json:"status"`
	StartedAt     *string `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt"`
	DurationMs    int64   `json:"durationMs"`
	RecordsSynced int     `json:"recordsSynced"`
	ErrorCount    int     `json:"errorCount"`
	TriggeredBy   string  `json:"triggeredBy"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Stats  json.RawMessage     `json:"stats"`
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID         uint   `json:"id"`
	EntityType string `json:"entityType"`
	ExternalId string `json:"externalId"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncPubSubPayload struct {
	RunId        uint `json:"run_id"`
	ConnectionId uint `json:"connection_id"`
}
