package activitypub

// ActivityKind is the outer axis of the dispatch table: the recognized
// top-level activity types, already lower-cased.
type ActivityKind string

const (
	ActivityUnknown    ActivityKind = ""
	ActivityFollow     ActivityKind = "follow"
	ActivityBlock      ActivityKind = "block"
	ActivityAnnounce   ActivityKind = "announce"
	ActivityLike       ActivityKind = "like"
	ActivityCreate     ActivityKind = "create"
	ActivityUpdate     ActivityKind = "update"
	ActivityAccept     ActivityKind = "accept"
	ActivityReject     ActivityKind = "reject"
	ActivityUndo       ActivityKind = "undo"
	ActivityDelete     ActivityKind = "delete"
	ActivityAdd        ActivityKind = "add"
	ActivityRemove     ActivityKind = "remove"
	ActivityMove       ActivityKind = "move"
	ActivityEmojiReact ActivityKind = EmojiReactType
	ActivityFlag       ActivityKind = "flag"
	ActivityInternal   ActivityKind = InternalType
)

var activityKinds = map[string]ActivityKind{
	string(ActivityFollow):     ActivityFollow,
	string(ActivityBlock):      ActivityBlock,
	string(ActivityAnnounce):   ActivityAnnounce,
	string(ActivityLike):       ActivityLike,
	string(ActivityCreate):     ActivityCreate,
	string(ActivityUpdate):     ActivityUpdate,
	string(ActivityAccept):     ActivityAccept,
	string(ActivityReject):     ActivityReject,
	string(ActivityUndo):       ActivityUndo,
	string(ActivityDelete):     ActivityDelete,
	string(ActivityAdd):        ActivityAdd,
	string(ActivityRemove):     ActivityRemove,
	string(ActivityMove):       ActivityMove,
	string(ActivityEmojiReact): ActivityEmojiReact,
	string(ActivityFlag):       ActivityFlag,
	string(ActivityInternal):   ActivityInternal,
}

// ParseActivityKind maps a lower-cased type string to its kind, or
// ActivityUnknown.
func ParseActivityKind(value string) ActivityKind {
	return activityKinds[value]
}

// PostTypeNames is the set of object types handled as posts on create and
// update.
var PostTypeNames = map[string]bool{
	"article":  true,
	"audio":    true,
	"event":    true,
	"image":    true,
	"note":     true,
	"page":     true,
	"question": true,
	"video":    true,
}

// IdentityTypeNames is the set of actor-ish object types handled as identity
// profile updates.
var IdentityTypeNames = map[string]bool{
	"person":       true,
	"service":      true,
	"group":        true,
	"organization": true,
	"application":  true,
}

// Internal action names routed through the queue by EnqueueInternal.
const (
	InternalFetchPost     = "fetchpost"
	InternalClearTimeline = "cleartimeline"
	InternalAddFollow     = "addfollow"
	InternalSyncPins      = "syncpins"
)
