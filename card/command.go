package card

// Command is a fire-and-forget request for the host to act on one entity.
type Command struct {
	Domain   string `json:"domain"`
	Service  string `json:"service"`
	EntityID string `json:"entity_id"`
}

// Dispatcher accepts commands. It reports nothing back: failures are the
// host's business.
type Dispatcher interface {
	Dispatch(cmd Command)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(cmd Command)

func (f DispatcherFunc) Dispatch(cmd Command) { f(cmd) }

func ToggleDoor(entityID string) Command {
	return Command{Domain: "cover", Service: "toggle", EntityID: entityID}
}

func ToggleLight(entityID string) Command {
	return Command{Domain: "light", Service: "toggle", EntityID: entityID}
}

func ToggleKeepOpen(entityID string) Command {
	return Command{Domain: "input_boolean", Service: "toggle", EntityID: entityID}
}
