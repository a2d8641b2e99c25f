package srvsvc

// Additional RPC method-level status codes returned in the outer
// RpcResponse.Status field (original_source's cifsd_rpc_command.flags),
// distinct from the NDR return_code embedded in a successful read's
// response body. Values mirror the CIFSD_RPC_E* enum's role, not its
// literal numbers (no kernel header defines them in the retrieved
// source).
const (
	StatusOK uint32 = iota
	StatusBadData
	StatusInvalidLevel
	StatusNotImplemented
	StatusMoreData
)

// NDR-level return codes embedded in a NetShareEnumAll/NetShareGetInfo
// response body (spec.md §4.3 "Encoding phase", step 7).
const (
	nerrSuccess   uint32 = 0x00000000
	errorMoreData uint32 = 0x000000EA
)

// SRVSVC opnums in scope (spec.md §4.3).
const (
	OpNetShareEnumAll uint16 = 15
	OpNetShareGetInfo uint16 = 16
)
