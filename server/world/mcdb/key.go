package mcdb

import "encoding/binary"

// KeyFunc returns the database key of the sub chunk at chunk x, z and sub
// chunk index y in the world with the name passed. The layout of keys is not
// fixed by the Store: a KeyFunc is supplied through Config.Key.
type KeyFunc func(world string, x, z int32, y int8) []byte

// keySubChunkData is the tag byte following the chunk coordinates in the key of
// a sub chunk.
const keySubChunkData = '/' // 2f

// BedrockKey lays out keys like Bedrock Edition overworld keys: chunk x and z
// as little endian int32, the sub chunk tag and the sub chunk index.
func BedrockKey(_ string, x, z int32, y int8) []byte {
	b := make([]byte, 10)
	binary.LittleEndian.PutUint32(b, uint32(x))
	binary.LittleEndian.PutUint32(b[4:], uint32(z))
	b[8] = keySubChunkData
	b[9] = byte(y)
	return b
}
