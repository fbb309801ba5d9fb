package tonapi

// Wire types for the tonapi.io v2 blockchain API. Only the fields the
// normalizer reads are declared; everything else in the payload is
// ignored.

// transactionsResponse is the envelope of
// GET /v2/blockchain/accounts/{id}/transactions.
type transactionsResponse struct {
	Transactions []transaction `json:"transactions"`
}

// transaction is a single on-chain transaction of the treasury account.
type transaction struct {
	Hash  string     `json:"hash"`
	UTime int64      `json:"utime"`
	InMsg *inMessage `json:"in_msg"`
}

// inMessage is the incoming message that carried the transfer value.
type inMessage struct {
	Value         int64        `json:"value"`
	Message       string       `json:"message"`
	DecodedOpName string       `json:"decoded_op_name"`
	DecodedBody   *decodedBody `json:"decoded_body"`
	Source        *accountRef  `json:"source"`
}

// decodedBody holds the decoded payload of a text-comment message.
type decodedBody struct {
	Text string `json:"text"`
}

// accountRef identifies a counterparty account.
type accountRef struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}
