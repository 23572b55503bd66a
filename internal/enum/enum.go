package enum

// ── Order workflow (CHECK constrained in DB) ──

const (
	OrderStatusRecibido      = "Recibido"
	OrderStatusEnPreparacion = "EnPreparacion"
	OrderStatusListo         = "Listo"
	OrderStatusEntregado     = "Entregado"
)

// ── Staff roles (CHECK constrained in DB) ──

const (
	UserRoleAdministrador = "Administrador"
	UserRoleOperador      = "Operador"
	UserRoleCliente       = "Cliente"
)

// ── Board column titles (labels, no DB constraint) ──

const (
	ColumnTitleRecibido      = "Recibidos"
	ColumnTitleEnPreparacion = "En Preparación"
	ColumnTitleListo         = "Listos"
	ColumnTitleEntregado     = "Entregados"
)

// ── Change feed ──

const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
)

const TableOrders = "orders"

// ── Websocket message types ──

// Client → server.
const (
	MsgHello         = "hello"
	MsgPermission    = "permission"
	MsgAudioUnlocked = "audio.unlocked"
	MsgPointer       = "pointer"
	MsgDragStart     = "drag.start"
	MsgDragEnd       = "drag.end"
	MsgDragCancel    = "drag.cancel"
	MsgCardClick     = "card.click"
	MsgDetailStatus  = "detail.status"
	MsgDetailClose   = "detail.close"
	MsgHistoryFilter = "history.filter"
	MsgRefresh       = "refresh"
)

// Server → client.
const (
	MsgProfile           = "profile"
	MsgSnapshot          = "snapshot"
	MsgToast             = "toast"
	MsgNotify            = "notify"
	MsgSound             = "sound"
	MsgPermissionRequest = "permission.request"
)

// ── Notification permission states (browser Notification API) ──

const (
	PermissionDefault = "default"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)
