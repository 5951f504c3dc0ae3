package log

// Global vars related to the logger package
var (
	Global *SubLogger

	EventMgr       *SubLogger
	ProcessorMgr   *SubLogger
	MaintenanceMgr *SubLogger
	NotifierMgr    *SubLogger
	GatewayMgr     *SubLogger
	StoreMgr       *SubLogger
	APIServerMgr   *SubLogger
	ConfigMgr      *SubLogger
)

func init() {
	Global = newSubLogger("LOG")

	EventMgr = newSubLogger("EVENT")
	ProcessorMgr = newSubLogger("PROCESSOR")
	MaintenanceMgr = newSubLogger("MAINTENANCE")
	NotifierMgr = newSubLogger("NOTIFIER")
	GatewayMgr = newSubLogger("GATEWAY")
	StoreMgr = newSubLogger("STORE")
	APIServerMgr = newSubLogger("APISERVER")
	ConfigMgr = newSubLogger("CONFIG")
}
