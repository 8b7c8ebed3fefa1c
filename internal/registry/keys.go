package registry

import "fmt"

// Key schema, all written as one atomic batch per token creation:
//
//	token:{mint}                                -> TokenDetail JSON
//	token_symbol:{SYMBOL}:{mint}                -> empty
//	token_created:{created_at:010}:{mint}        -> empty
//	token_slot:{created_slot:010}:{mint}         -> empty
//	token_payer:{payer}:{created_at:010}:{mint}  -> empty

func tokenKey(mint string) []byte {
	return []byte(fmt.Sprintf("token:%s", mint))
}

func tokenSymbolKey(symbol, mint string) []byte {
	return []byte(fmt.Sprintf("token_symbol:%s:%s", symbol, mint))
}

func tokenSymbolPrefix(symbol string) []byte {
	return []byte(fmt.Sprintf("token_symbol:%s:", symbol))
}

func tokenCreatedKey(createdAt int64, mint string) []byte {
	return []byte(fmt.Sprintf("token_created:%010d:%s", createdAt, mint))
}

const tokenCreatedPrefix = "token_created:"

func tokenSlotKey(createdSlot uint64, mint string) []byte {
	return []byte(fmt.Sprintf("token_slot:%010d:%s", createdSlot, mint))
}

const tokenSlotPrefix = "token_slot:"

func tokenPayerKey(payer string, createdAt int64, mint string) []byte {
	return []byte(fmt.Sprintf("token_payer:%s:%010d:%s", payer, createdAt, mint))
}

func tokenPayerPrefix(payer string) []byte {
	return []byte(fmt.Sprintf("token_payer:%s:", payer))
}
