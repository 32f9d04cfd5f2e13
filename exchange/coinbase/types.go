package coinbase

import "encoding/json"

// User /v2/user 返回的用户
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userResponse struct {
	Data User `json:"data"`
}

// Account 钱包账户
type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency struct {
		Code string `json:"code"`
	} `json:"currency"`
}

// Money 金额 + 币种
type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// RawTransaction Coinbase 原始交易
type RawTransaction struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	Amount       Money  `json:"amount"`
	NativeAmount Money  `json:"native_amount"`
	CreatedAt    string `json:"created_at"`
}

type pagination struct {
	NextURI string `json:"next_uri"`
}

type pageResponse struct {
	Pagination pagination      `json:"pagination"`
	Data       json.RawMessage `json:"data"`
}
