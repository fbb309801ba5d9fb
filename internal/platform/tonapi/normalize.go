package tonapi

import (
	"strings"
	"time"

	"github.com/okozhin/icewheel/internal/domain"
)

// normalizeTransfer converts one wire transaction into a domain.Transfer.
// It returns false for transactions that are not usable incoming value
// transfers (no in-message, zero value, missing hash).
//
// The comment is extracted with a fixed, ordered fallback policy rather
// than ad hoc per-call heuristics:
//  1. decoded_body.text when decoded_op_name is "text_comment"
//  2. the raw in_msg.message field
//  3. no comment at all (HasComment=false); the reconciler must then
//     treat the transfer as reduced-assurance.
func normalizeTransfer(tx transaction) (domain.Transfer, bool) {
	if tx.Hash == "" || tx.InMsg == nil || tx.InMsg.Value <= 0 {
		return domain.Transfer{}, false
	}

	t := domain.Transfer{
		ID:         tx.Hash,
		AmountNano: tx.InMsg.Value,
		Timestamp:  time.Unix(tx.UTime, 0),
	}
	if tx.InMsg.Source != nil {
		t.Sender = tx.InMsg.Source.Address
	}

	switch {
	case tx.InMsg.DecodedOpName == "text_comment" && tx.InMsg.DecodedBody != nil && tx.InMsg.DecodedBody.Text != "":
		t.Comment = strings.TrimSpace(tx.InMsg.DecodedBody.Text)
		t.HasComment = true
	case strings.TrimSpace(tx.InMsg.Message) != "":
		t.Comment = strings.TrimSpace(tx.InMsg.Message)
		t.HasComment = true
	}

	return t, true
}
