package encode

// EncodeUint64 appends u to buf in big-endian order.
func EncodeUint64(buf []byte, u uint64) []byte {
	return append(buf, byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32),
		byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

func EncodeUint32(buf []byte, u uint32) []byte {
	return append(buf, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

func EncodeUint16(buf []byte, u uint16) []byte {
	return append(buf, byte(u>>8), byte(u))
}
