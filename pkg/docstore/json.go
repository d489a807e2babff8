package docstore

import "encoding/json"

// ReadJSON reads a document and decodes it into T. A document that is not
// valid JSON for T fails with [KindSerialization].
func ReadJSON[T any](s *Store, namespace, key string) Result[T] {
	raw := s.Read(namespace, key)
	if raw.Failed() {
		return failed[T](raw.Err)
	}

	var value T

	err := json.Unmarshal([]byte(raw.Value), &value)
	if err != nil {
		path, _ := s.Resolve(namespace, key)

		return failed[T](s.fail(opRead, namespace, key, path, KindSerialization, err))
	}

	return succeed(value)
}
