package wsmanager

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// maxNetFrameSize is the upper bound for the length prefix of a frame on a net.Conn.
// Larger prefixes can not be resynchronized and end the connection.
const maxNetFrameSize = 1 << 24

type netConnection struct {
	*ConnectionBase
	conn   net.Conn
	reader *bufio.Reader
	wmx    sync.Mutex
}

// NewNetConnection wraps net.Conn into a Connection. Frames are prefixed with their length as uvarint.
// The connection id is left empty, so the Server assigns one.
func NewNetConnection(ctx context.Context, conn net.Conn) Connection {
	netConn := &netConnection{
		ConnectionBase: NewConnectionBase(ctx, ""),
		conn:           conn,
		reader:         bufio.NewReader(conn),
	}
	go func() {
		<-netConn.Context().Done()
		_ = netConn.Close()
	}()
	return netConn
}

func (nc *netConnection) Receive() ([]byte, error) {
	size, err := binary.ReadUvarint(nc.reader)
	if err != nil {
		return nil, fmt.Errorf("%T: %w", nc, err)
	}
	if size > maxNetFrameSize {
		return nil, fmt.Errorf("%T: frame size %d exceeds %d", nc, size, maxNetFrameSize)
	}
	data := make([]byte, size)
	if _, err = io.ReadFull(nc.reader, data); err != nil {
		return nil, fmt.Errorf("%T: %w", nc, err)
	}
	return data, nil
}

func (nc *netConnection) Send(data []byte) error {
	if nc.State() != Open {
		return ErrConnectionClosed
	}
	frame := binary.AppendUvarint(make([]byte, 0, len(data)+binary.MaxVarintLen64), uint64(len(data)))
	frame = append(frame, data...)
	nc.wmx.Lock()
	defer nc.wmx.Unlock()
	if _, err := nc.conn.Write(frame); err != nil {
		return fmt.Errorf("%T: %w", nc, err)
	}
	return nil
}

func (nc *netConnection) Close() error {
	return nc.CloseWith(nc.conn.Close)
}
