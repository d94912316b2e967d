package upgrader

import "errors"

var (
	// ErrDuplicateProtocol 协议已注册
	ErrDuplicateProtocol = errors.New("upgrader: protocol already registered")

	// ErrNoHandlers 没有注册任何协议
	ErrNoHandlers = errors.New("upgrader: no protocol handlers registered")

	// ErrUnknownNegotiation 未知的协商方式
	ErrUnknownNegotiation = errors.New("upgrader: unknown negotiation")

	// ErrFrameTooLarge 协商帧过大
	ErrFrameTooLarge = errors.New("upgrader: negotiation frame too large")
)
