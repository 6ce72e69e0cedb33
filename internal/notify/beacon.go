package notify

import "net"

// beaconPayload is the fixed datagram clients watch for to refresh
// their wallets.
var beaconPayload = []byte("rewards updated")

// Beacon sends the reward announcement to a multicast group.
type Beacon struct {
	conn *net.UDPConn
}

func NewBeacon(group string) (*Beacon, error) {
	addr, err := net.ResolveUDPAddr("udp", group)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	return &Beacon{conn: conn}, nil
}

func (b *Beacon) Send() error {
	_, err := b.conn.Write(beaconPayload)
	return err
}

func (b *Beacon) Close() error {
	return b.conn.Close()
}
