package bus

// Action names the cache invalidation carried by a Message.
type Action string

const (
	// ActionUnsetAccessLogic drops one access entry, by id and by token.
	ActionUnsetAccessLogic Action = "UNSET_ACCESS_LOGIC"

	// ActionUnsetUserData drops every cached stream tree and access of a user.
	ActionUnsetUserData Action = "UNSET_USER_DATA"

	// ActionUnsetUser drops a username mapping and the data of the user it
	// resolved to.
	ActionUnsetUser Action = "UNSET_USER"
)

// TopicUnsetUser is the global topic for username invalidations. All other
// topics are user ids.
const TopicUnsetUser = "UNSET_USER"

// Message is the wire form of an invalidation.
type Message struct {
	Action      Action `json:"action"`
	UserID      string `json:"userId,omitempty"`
	Username    string `json:"username,omitempty"`
	AccessID    string `json:"accessId,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

// Valid reports whether m carries the fields its action needs.
func (m Message) Valid() bool {
	switch m.Action {
	case ActionUnsetUserData:
		return m.UserID != ""
	case ActionUnsetAccessLogic:
		return m.UserID != "" && (m.AccessID != "" || m.AccessToken != "")
	case ActionUnsetUser:
		return m.Username != ""
	default:
		return false
	}
}
