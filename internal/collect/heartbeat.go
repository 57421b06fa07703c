package collect

// HeartbeatResult is a trivial liveness signal; its presence in a report
// proves the collect-to-emit pipeline ran.
type HeartbeatResult struct {
	HeartbeatOK bool
}

// CollectHeartbeat reports process liveness.
func CollectHeartbeat() HeartbeatResult {
	return HeartbeatResult{HeartbeatOK: true}
}
