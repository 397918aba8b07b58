package model

// MessageType identifies a broadcast event on the wire.
type MessageType string

const (
	MsgDrawPixel      MessageType = "DRAW_PIXEL"
	MsgTextMessage    MessageType = "TEXT_MESSAGE"
	MsgUpdatePlaylist MessageType = "UPDATE_PLAYLIST"
	MsgPlaySong       MessageType = "PLAY_SONG"
	MsgSkipSong       MessageType = "SKIP_SONG"
	MsgInitCanvas     MessageType = "INIT_CANVAS"
	MsgInitMessage    MessageType = "INIT_MESSAGE"
	MsgReceiveGift    MessageType = "RECEIVE_GIFT"
)

// Message is the envelope published on a broadcast channel and delivered to
// every observer. Data must be JSON-serializable.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// CanvasSnapshot is the cold-start payload sent to a new canvas observer.
type CanvasSnapshot struct {
	Cols   int            `json:"col_num"`
	Rows   int            `json:"row_num"`
	Colors map[int]string `json:"colors"`
	Cells  []int          `json:"pixels"`
}

// EmptyCell marks a grid position nothing has been drawn on yet.
const EmptyCell = -1
