package request

// Controllers.
const (
	ControllerDocument = "document"
	ControllerBulk     = "bulk"
	ControllerRealtime = "realtime"
)

// Document-oriented actions.
const (
	ActionGet              = "get"
	ActionDelete           = "delete"
	ActionCreate           = "create"
	ActionCreateOrReplace  = "createOrReplace"
	ActionReplace          = "replace"
	ActionUpdate           = "update"
	ActionUpsert           = "upsert"
	ActionMGet             = "mGet"
	ActionMDelete          = "mDelete"
	ActionMCreate          = "mCreate"
	ActionMCreateOrReplace = "mCreateOrReplace"
	ActionMReplace         = "mReplace"
	ActionMUpdate          = "mUpdate"
	ActionUpdateByQuery    = "updateByQuery"
	ActionSearch           = "search"
	ActionDeleteByQuery    = "deleteByQuery"
)

// Bulk actions.
const (
	ActionImport = "import"
	ActionWrite  = "write"
	ActionMWrite = "mWrite"
)

// Realtime actions.
const (
	ActionSubscribe   = "subscribe"
	ActionJoin        = "join"
	ActionUnsubscribe = "unsubscribe"
	ActionCount       = "count"
	ActionList        = "list"
	ActionPublish     = "publish"
	ActionValidate    = "validate"
)

// Protocols a connection can be opened with.
const (
	ProtocolHTTP      = "http"
	ProtocolWebSocket = "websocket"
	// ProtocolInternal is used by embedded callers running inside the process.
	ProtocolInternal = "internal"
)

// Well-known argument names.
const (
	ArgID        = "_id"
	ArgIDs       = "ids"
	ArgNotify    = "notify"
	ArgPropagate = "propagate"
	ArgStrict    = "strict"
	ArgRefresh   = "refresh"
	ArgVolatile  = "volatile"
)

// AnonymousID is the user identifier of unauthenticated callers.
const AnonymousID = "-1"
