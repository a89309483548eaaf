package mqtt

import "strings"

// Topic actions under {prefix}/{axis}/.
const (
	ActionSet    = "set"
	ActionCancel = "cancel"
	ActionState  = "state"
)

// Topics builds the topic hierarchy under a prefix.
//
//	{prefix}/{axis}/set     command, JSON SetCommand
//	{prefix}/{axis}/cancel  command, payload ignored
//	{prefix}/{axis}/state   retained StatePayload
//	{prefix}/devices        JSON array of device identities
//	{prefix}/status         retained online/offline marker
type Topics struct {
	Prefix string
}

// Set returns the set command topic of an axis.
func (t Topics) Set(axis string) string { return t.axisTopic(axis, ActionSet) }

// Cancel returns the cancel command topic of an axis.
func (t Topics) Cancel(axis string) string { return t.axisTopic(axis, ActionCancel) }

// State returns the retained state topic of an axis.
func (t Topics) State(axis string) string { return t.axisTopic(axis, ActionState) }

// Devices returns the device enumeration topic.
func (t Topics) Devices() string { return t.Prefix + "/devices" }

// Status returns the daemon status topic.
func (t Topics) Status() string { return t.Prefix + "/status" }

func (t Topics) axisTopic(axis, action string) string {
	return t.Prefix + "/" + axis + "/" + action
}

// Parse splits {prefix}/{axis}/{action}.
func (t Topics) Parse(topic string) (axis, action string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/")
	if !found {
		return "", "", false
	}
	axis, action, found = strings.Cut(rest, "/")
	if !found || axis == "" || action == "" || strings.Contains(action, "/") {
		return "", "", false
	}
	return axis, action, true
}
