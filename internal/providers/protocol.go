package providers

import "encoding/json"

// Wire frames of the pub/sub protocol. Commands carry an id that the matching
// reply echoes; pushes have no id.

type command struct {
	ID          uint64          `json:"id"`
	Connect     *connectRequest `json:"connect,omitempty"`
	Subscribe   *channelRequest `json:"subscribe,omitempty"`
	Unsubscribe *channelRequest `json:"unsubscribe,omitempty"`
	RPC         *rpcRequest     `json:"rpc,omitempty"`
}

type connectRequest struct {
	Token string `json:"token,omitempty"`
	Name  string `json:"name,omitempty"`
}

type channelRequest struct {
	Channel string `json:"channel"`
}

type rpcRequest struct {
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type reply struct {
	ID          uint64         `json:"id,omitempty"`
	Error       *replyError    `json:"error,omitempty"`
	Connect     *connectResult `json:"connect,omitempty"`
	Subscribe   *struct{}      `json:"subscribe,omitempty"`
	Unsubscribe *struct{}      `json:"unsubscribe,omitempty"`
	RPC         *rpcResult     `json:"rpc,omitempty"`
	Push        *push          `json:"push,omitempty"`
}

type replyError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type connectResult struct {
	Client string `json:"client"`
}

type rpcResult struct {
	Data json.RawMessage `json:"data,omitempty"`
}

type push struct {
	Channel    string       `json:"channel,omitempty"`
	Pub        *publication `json:"pub,omitempty"`
	Disconnect *disconnect  `json:"disconnect,omitempty"`
}

type publication struct {
	Data json.RawMessage `json:"data"`
}

type disconnect struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// Transport error codes raised locally
const (
	CodeDialFailed    = 1000
	CodeConnectFailed = 1001
	CodeReadFailed    = 1002
)
