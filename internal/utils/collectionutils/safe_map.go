package collectionutils

import "sync"

type SafeMap[K comparable, V any] struct {
	data  map[K]V
	mutex sync.RWMutex
}

func New[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{
		data: make(map[K]V),
	}
}

func (safeMap *SafeMap[K, V]) Store(newKey K, newValue V) {
	safeMap.mutex.Lock()
	defer safeMap.mutex.Unlock()
	safeMap.data[newKey] = newValue
}

func (safeMap *SafeMap[K, V]) Get(key K) (V, bool) {
	safeMap.mutex.RLock()
	defer safeMap.mutex.RUnlock()
	value, exists := safeMap.data[key]

	return value, exists
}

// GetOrCreate returns the value stored under key, creating it with create when absent.
// create runs under the write lock, so at most one value is ever created per key.
func (safeMap *SafeMap[K, V]) GetOrCreate(key K, create func() V) V {
	if value, ok := safeMap.Get(key); ok {
		return value
	}

	safeMap.mutex.Lock()
	defer safeMap.mutex.Unlock()
	if value, ok := safeMap.data[key]; ok {
		return value
	}
	value := create()
	safeMap.data[key] = value
	return value
}

func (safeMap *SafeMap[K, V]) Delete(key K) {
	safeMap.mutex.Lock()
	defer safeMap.mutex.Unlock()
	delete(safeMap.data, key)
}
