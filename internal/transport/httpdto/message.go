package httpdto

import "time"

type SendMessageRequest struct {
	RecipientID      string `json:"recipient_id"`
	RecipientType    string `json:"recipient_type"`
	Content          string `json:"content"`
	Type             string `json:"type"`
	ClientMessageID  string `json:"client_message_id"`
	ReplyToMessageID string `json:"reply_to_message_id"`
}

type SendMessageResponse struct {
	MessageID      string `json:"message_id"`
	SequenceNumber int64  `json:"sequence_number"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type MarkAsReadRequest struct {
	PeerID        string     `json:"peer_id"`
	GroupID       string     `json:"group_id"`
	UpToMessageID string     `json:"up_to_message_id"`
	UpToTime      *time.Time `json:"up_to_time"`
}

type MarkAsReadResponse struct {
	NewReceipts int `json:"new_receipts"`
}
