// Package arp reads the local IPv4 neighbor table.
//
// Probing a silent host on the local link still makes the kernel resolve its
// hardware address, so hosts that drop ICMP and refuse no TCP port can show
// up here after a sweep.
package arp
