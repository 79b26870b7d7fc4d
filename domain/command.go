package domain

type PostMessageCommand struct {
	Credential string
	Text       string
	Receiver   *string
}

type GetMessagesCommand struct {
	Credential string
	SinceID    *uint64
}
