package electra

// Codec is used to serialize and deserialize values before and after they hit
// the on-disk index.
type Codec interface {
	Marshal(value interface{}) ([]byte, error)
	Unmarshal(data []byte, value interface{}) error
}
