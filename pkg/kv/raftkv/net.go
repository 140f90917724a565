package raftkv

import "net"

func resolveTCPAddr(bindAddr string) (*net.TCPAddr, error) {
	return net.ResolveTCPAddr("tcp", bindAddr)
}
