package registry

import (
	"errors"
	"sync"
)

var (
	// ErrOutboxFull is returned by Send when the peer is not draining its queue.
	ErrOutboxFull = errors.New("outbox full")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("connection closed")
)

// DefaultOutboxSize is the number of messages queued per connection.
const DefaultOutboxSize = 32

// Conn is one live link to a vehicle, a controller or an observer.
type Conn interface {
	// ID is unique among live connections.
	ID() string

	// Send queues msg without blocking. An error means the message was not
	// queued and the connection should be considered dead.
	Send(msg []byte) error

	// Close terminates the link. It is idempotent.
	Close(reason string)
}

// Outbox is the bounded queue and writer loop shared by the transports. The
// transport supplies write and close; Run drains the queue until Close.
type Outbox struct {
	queue chan []byte
	done  chan struct{}
	once  sync.Once

	write   func(msg []byte) error
	onClose func(reason string)
}

func NewOutbox(size int, write func(msg []byte) error, onClose func(reason string)) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{
		queue:   make(chan []byte, size),
		done:    make(chan struct{}),
		write:   write,
		onClose: onClose,
	}
}

// Send queues msg, or fails immediately when the queue is full or closed.
func (o *Outbox) Send(msg []byte) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}

	select {
	case o.queue <- msg:
		return nil
	case <-o.done:
		return ErrClosed
	default:
		return ErrOutboxFull
	}
}

// Run writes queued messages in order. A write error closes the outbox.
func (o *Outbox) Run() {
	for {
		select {
		case <-o.done:
			return
		case msg := <-o.queue:
			if err := o.write(msg); err != nil {
				o.Close("write failed: " + err.Error())
				return
			}
		}
	}
}

// Flush writes whatever is still queued. Transports call it after Run has
// returned to get last messages, such as a termination notice, out.
func (o *Outbox) Flush() {
	for {
		select {
		case msg := <-o.queue:
			if err := o.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Close stops Run. onClose runs before Done is closed.
func (o *Outbox) Close(reason string) {
	o.once.Do(func() {
		if o.onClose != nil {
			o.onClose(reason)
		}
		close(o.done)
	})
}

// Done is closed once the outbox is closed.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}
