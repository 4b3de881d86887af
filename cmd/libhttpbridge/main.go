// Command libhttpbridge builds the engine as a C shared library:
//
//	go build -buildmode=c-shared -o libhttpbridge.so ./cmd/libhttpbridge
//
// Every export forwards to bridge.Default(). Handles are uint64_t, zero is
// never a valid handle, and every function returns 0 or a positive count on
// success and a negative code on failure.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"unsafe"

	"github.com/samvad-hq/httpbridge/pkg/bridge"
)

func main() {}

//export http_get
func http_get(url, headersJSON *C.char, timeoutMs C.int32_t, handleOut *C.uint64_t, lengthOut *C.int64_t, statusOut *C.uint32_t) C.int32_t {
	return request("GET", url, headersJSON, nil, 0, timeoutMs, handleOut, lengthOut, statusOut)
}

//export http_post
func http_post(url, headersJSON *C.char, body *C.uint8_t, bodyLen, timeoutMs C.int32_t, handleOut *C.uint64_t, lengthOut *C.int64_t, statusOut *C.uint32_t) C.int32_t {
	return request("POST", url, headersJSON, body, bodyLen, timeoutMs, handleOut, lengthOut, statusOut)
}

//export http_put
func http_put(url, headersJSON *C.char, body *C.uint8_t, bodyLen, timeoutMs C.int32_t, handleOut *C.uint64_t, lengthOut *C.int64_t, statusOut *C.uint32_t) C.int32_t {
	return request("PUT", url, headersJSON, body, bodyLen, timeoutMs, handleOut, lengthOut, statusOut)
}

//export http_patch
func http_patch(url, headersJSON *C.char, body *C.uint8_t, bodyLen, timeoutMs C.int32_t, handleOut *C.uint64_t, lengthOut *C.int64_t, statusOut *C.uint32_t) C.int32_t {
	return request("PATCH", url, headersJSON, body, bodyLen, timeoutMs, handleOut, lengthOut, statusOut)
}

//export http_delete
func http_delete(url, headersJSON *C.char, timeoutMs C.int32_t, handleOut *C.uint64_t, lengthOut *C.int64_t, statusOut *C.uint32_t) C.int32_t {
	return request("DELETE", url, headersJSON, nil, 0, timeoutMs, handleOut, lengthOut, statusOut)
}

func request(method string, url, headersJSON *C.char, body *C.uint8_t, bodyLen, timeoutMs C.int32_t, handleOut *C.uint64_t, lengthOut *C.int64_t, statusOut *C.uint32_t) C.int32_t {
	call := bridge.Call{
		Method:     method,
		TimeoutMs:  int32(timeoutMs),
		HasOutputs: handleOut != nil && lengthOut != nil && statusOut != nil,
	}
	if call.HasOutputs {
		*handleOut, *lengthOut, *statusOut = 0, 0, 0
	}
	if url != nil {
		u := C.GoString(url)
		call.URL = &u
	}
	if headersJSON != nil {
		call.Headers = C.GoString(headersJSON)
	}
	if body != nil && bodyLen > 0 {
		call.Body = C.GoBytes(unsafe.Pointer(body), C.int(bodyLen))
	}

	res := bridge.Default().RequestCall(call)
	if res.Code != bridge.OK {
		return C.int32_t(res.Code)
	}
	*handleOut = C.uint64_t(res.Handle)
	*lengthOut = C.int64_t(res.Length)
	*statusOut = C.uint32_t(res.Status)
	return 0
}

//export http_read_response
func http_read_response(handle C.uint64_t, buf *C.uint8_t, capacity C.int32_t) C.int32_t {
	return C.int32_t(bridge.Default().ReadBuffer(uint64(handle), cBytes(buf, capacity), int32(capacity)))
}

//export http_free_response
func http_free_response(handle C.uint64_t) C.int32_t {
	return C.int32_t(bridge.Default().Free(uint64(handle)))
}

// http_get_last_error writes the message NUL-terminated and returns its
// length without the terminator.
//
//export http_get_last_error
func http_get_last_error(buf *C.uint8_t, capacity C.int32_t) C.int32_t {
	return C.int32_t(bridge.Default().LastErrorNUL(cBytes(buf, capacity)))
}

// cBytes views a caller buffer as a slice. It is nil for a NULL pointer or
// a non-positive capacity.
func cBytes(buf *C.uint8_t, capacity C.int32_t) []byte {
	if buf == nil || capacity <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(capacity))
}

//export http_shutdown
func http_shutdown() {
	bridge.Default().Shutdown()
}

//export http_pending_count
func http_pending_count() C.int32_t {
	return C.int32_t(bridge.Default().Pending())
}
