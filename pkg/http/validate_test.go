package http

import "testing"

type symbolReq struct {
	Symbol string `validate:"required,symbol"`
}

func TestSymbolValidation(t *testing.T) {
	if err := validate.Struct(symbolReq{Symbol: "BTCUSDT"}); err != nil {
		t.Fatalf("valid symbol rejected: %v", err)
	}
	if err := validate.Struct(symbolReq{Symbol: "btcusdt"}); err == nil {
		t.Fatalf("lowercase symbol accepted")
	}
	if err := validate.Struct(symbolReq{Symbol: "BTC"}); err == nil {
		t.Fatalf("too-short symbol accepted")
	}
	if err := validate.Struct(symbolReq{}); err == nil {
		t.Fatalf("empty symbol accepted")
	}
}
