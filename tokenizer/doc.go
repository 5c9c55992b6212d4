// Package tokenizer builds the compressed vocabulary used by the
// engram hashing layers.
//
// Many entries of a byte-pair vocabulary normalize to the same text
// (" The", "the", "THE", ...). The compressed tokenizer groups ids by
// normalized form and reassigns them into a smaller contiguous id
// space, which directly shrinks every downstream hash/embedding table.
package tokenizer
