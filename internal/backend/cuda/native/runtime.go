//go:build cuda

package native

/*
#cgo LDFLAGS: -lcudart -lcublas

// Forward declarations keep the build free of CUDA headers; the linker still
// needs libcudart and libcublas when building with the cuda tag.
typedef void* cudaStream_t;
typedef int cudaError_t;

extern const char* cudaGetErrorString(cudaError_t err);
extern cudaError_t cudaGetDeviceCount(int* count);
extern cudaError_t cudaSetDevice(int device);
extern cudaError_t cudaDeviceGetAttribute(int* value, int attr, int device);
extern cudaError_t cudaStreamCreate(cudaStream_t* stream);
extern cudaError_t cudaStreamDestroy(cudaStream_t stream);
extern cudaError_t cudaStreamSynchronize(cudaStream_t stream);
extern cudaError_t cudaMalloc(void** ptr, unsigned long long size);
extern cudaError_t cudaFree(void* ptr);
extern cudaError_t cudaMemcpy(void* dst, const void* src, unsigned long long size, int kind);
extern cudaError_t cudaMemcpyAsync(void* dst, const void* src, unsigned long long size, int kind, cudaStream_t stream);
extern cudaError_t cudaMemsetAsync(void* dst, int value, unsigned long long size, cudaStream_t stream);

#define BLAST_CUDA_MEMCPY_HOST_TO_DEVICE 1
#define BLAST_CUDA_MEMCPY_DEVICE_TO_HOST 2
#define BLAST_CUDA_MEMCPY_DEVICE_TO_DEVICE 3
#define BLAST_CUDA_ATTR_MAX_THREADS_PER_BLOCK 1

typedef struct cublasContext* cublasHandle_t;
typedef int cublasStatus_t;

extern cublasStatus_t cublasCreate_v2(cublasHandle_t* handle);
extern cublasStatus_t cublasDestroy_v2(cublasHandle_t handle);
extern cublasStatus_t cublasSetStream_v2(cublasHandle_t handle, cudaStream_t stream);

extern cublasStatus_t cublasSaxpy_v2(cublasHandle_t h, int n, const float* alpha, const float* x, int incx, float* y, int incy);
extern cublasStatus_t cublasDaxpy_v2(cublasHandle_t h, int n, const double* alpha, const double* x, int incx, double* y, int incy);
extern cublasStatus_t cublasSscal_v2(cublasHandle_t h, int n, const float* alpha, float* x, int incx);
extern cublasStatus_t cublasDscal_v2(cublasHandle_t h, int n, const double* alpha, double* x, int incx);
extern cublasStatus_t cublasScopy_v2(cublasHandle_t h, int n, const float* x, int incx, float* y, int incy);
extern cublasStatus_t cublasDcopy_v2(cublasHandle_t h, int n, const double* x, int incx, double* y, int incy);
extern cublasStatus_t cublasSswap_v2(cublasHandle_t h, int n, float* x, int incx, float* y, int incy);
extern cublasStatus_t cublasDswap_v2(cublasHandle_t h, int n, double* x, int incx, double* y, int incy);
extern cublasStatus_t cublasSdot_v2(cublasHandle_t h, int n, const float* x, int incx, const float* y, int incy, float* result);
extern cublasStatus_t cublasDdot_v2(cublasHandle_t h, int n, const double* x, int incx, const double* y, int incy, double* result);
extern cublasStatus_t cublasSgemv_v2(cublasHandle_t h, int trans, int m, int n, const float* alpha, const float* A, int lda,
	const float* x, int incx, const float* beta, float* y, int incy);
extern cublasStatus_t cublasDgemv_v2(cublasHandle_t h, int trans, int m, int n, const double* alpha, const double* A, int lda,
	const double* x, int incx, const double* beta, double* y, int incy);

static const char* blastCudaGetErrorString(cudaError_t err) { return cudaGetErrorString(err); }
static int blastCudaGetDeviceCount(int* out) { return (int)cudaGetDeviceCount(out); }
static int blastCudaSetDevice(int device) { return (int)cudaSetDevice(device); }
static int blastCudaMaxThreadsPerBlock(int* out, int device) {
	return (int)cudaDeviceGetAttribute(out, BLAST_CUDA_ATTR_MAX_THREADS_PER_BLOCK, device);
}
static int blastCudaStreamCreate(cudaStream_t* out) { return (int)cudaStreamCreate(out); }
static int blastCudaStreamDestroy(cudaStream_t s) { return (int)cudaStreamDestroy(s); }
static int blastCudaStreamSynchronize(cudaStream_t s) { return (int)cudaStreamSynchronize(s); }
static int blastCudaMalloc(void** ptr, unsigned long long size) { return (int)cudaMalloc(ptr, size); }
static int blastCudaFree(void* ptr) { return (int)cudaFree(ptr); }
static int blastCudaMemcpy(void* dst, const void* src, unsigned long long size, int kind) {
	return (int)cudaMemcpy(dst, src, size, kind);
}
static int blastCudaMemcpyAsync(void* dst, const void* src, unsigned long long size, int kind, cudaStream_t s) {
	return (int)cudaMemcpyAsync(dst, src, size, kind, s);
}
static int blastCudaMemsetAsync(void* dst, unsigned long long size, cudaStream_t s) {
	return (int)cudaMemsetAsync(dst, 0, size, s);
}

static int blastCublasCreate(cublasHandle_t* out) { return (int)cublasCreate_v2(out); }
static int blastCublasDestroy(cublasHandle_t h) { return (int)cublasDestroy_v2(h); }
static int blastCublasSetStream(cublasHandle_t h, cudaStream_t s) { return (int)cublasSetStream_v2(h, s); }

static int blastSaxpy(cublasHandle_t h, int n, float alpha, const void* x, int incx, void* y, int incy) {
	return (int)cublasSaxpy_v2(h, n, &alpha, (const float*)x, incx, (float*)y, incy);
}
static int blastDaxpy(cublasHandle_t h, int n, double alpha, const void* x, int incx, void* y, int incy) {
	return (int)cublasDaxpy_v2(h, n, &alpha, (const double*)x, incx, (double*)y, incy);
}
static int blastSscal(cublasHandle_t h, int n, float alpha, void* x, int incx) {
	return (int)cublasSscal_v2(h, n, &alpha, (float*)x, incx);
}
static int blastDscal(cublasHandle_t h, int n, double alpha, void* x, int incx) {
	return (int)cublasDscal_v2(h, n, &alpha, (double*)x, incx);
}
static int blastScopy(cublasHandle_t h, int n, const void* x, int incx, void* y, int incy) {
	return (int)cublasScopy_v2(h, n, (const float*)x, incx, (float*)y, incy);
}
static int blastDcopy(cublasHandle_t h, int n, const void* x, int incx, void* y, int incy) {
	return (int)cublasDcopy_v2(h, n, (const double*)x, incx, (double*)y, incy);
}
static int blastSswap(cublasHandle_t h, int n, void* x, int incx, void* y, int incy) {
	return (int)cublasSswap_v2(h, n, (float*)x, incx, (float*)y, incy);
}
static int blastDswap(cublasHandle_t h, int n, void* x, int incx, void* y, int incy) {
	return (int)cublasDswap_v2(h, n, (double*)x, incx, (double*)y, incy);
}
static int blastSdot(cublasHandle_t h, int n, const void* x, int incx, const void* y, int incy, float* out) {
	return (int)cublasSdot_v2(h, n, (const float*)x, incx, (const float*)y, incy, out);
}
static int blastDdot(cublasHandle_t h, int n, const void* x, int incx, const void* y, int incy, double* out) {
	return (int)cublasDdot_v2(h, n, (const double*)x, incx, (const double*)y, incy, out);
}
static int blastSgemv(cublasHandle_t h, int trans, int m, int n, float alpha, const void* A, int lda,
	const void* x, int incx, float beta, void* y, int incy) {
	return (int)cublasSgemv_v2(h, trans, m, n, &alpha, (const float*)A, lda, (const float*)x, incx, &beta, (float*)y, incy);
}
static int blastDgemv(cublasHandle_t h, int trans, int m, int n, double alpha, const void* A, int lda,
	const void* x, int incx, double beta, void* y, int incy) {
	return (int)cublasDgemv_v2(h, trans, m, n, &alpha, (const double*)A, lda, (const double*)x, incx, &beta, (double*)y, incy);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type Stream struct {
	ptr C.cudaStream_t
}

type BlasHandle struct {
	ptr C.cublasHandle_t
}

// DeviceBuffer is a device pointer. Offset views share the allocation and
// must not be freed.
type DeviceBuffer struct {
	ptr unsafe.Pointer
}

func DeviceCount() (int, error) {
	var count C.int
	if err := cudaErr(C.blastCudaGetDeviceCount(&count)); err != nil {
		return 0, err
	}
	return int(count), nil
}

func SetDevice(ordinal int) error {
	return cudaErr(C.blastCudaSetDevice(C.int(ordinal)))
}

func MaxThreadsPerBlock(ordinal int) (int, error) {
	var v C.int
	if err := cudaErr(C.blastCudaMaxThreadsPerBlock(&v, C.int(ordinal))); err != nil {
		return 0, err
	}
	return int(v), nil
}

func NewStream() (Stream, error) {
	var stream C.cudaStream_t
	if err := cudaErr(C.blastCudaStreamCreate(&stream)); err != nil {
		return Stream{}, err
	}
	return Stream{ptr: stream}, nil
}

func (s Stream) Destroy() error {
	if s.ptr == nil {
		return nil
	}
	return cudaErr(C.blastCudaStreamDestroy(s.ptr))
}

func (s Stream) Synchronize() error {
	if s.ptr == nil {
		return nil
	}
	return cudaErr(C.blastCudaStreamSynchronize(s.ptr))
}

func AllocDevice(bytes int64) (DeviceBuffer, error) {
	if bytes <= 0 {
		return DeviceBuffer{}, fmt.Errorf("device alloc size must be > 0")
	}
	var ptr unsafe.Pointer
	if err := cudaErr(C.blastCudaMalloc((*unsafe.Pointer)(&ptr), C.ulonglong(bytes))); err != nil {
		return DeviceBuffer{}, err
	}
	return DeviceBuffer{ptr: ptr}, nil
}

func (b DeviceBuffer) Free() error {
	if b.ptr == nil {
		return nil
	}
	return cudaErr(C.blastCudaFree(b.ptr))
}

func (b DeviceBuffer) Ptr() unsafe.Pointer {
	return b.ptr
}

// Offset returns a view starting bytes into b.
func (b DeviceBuffer) Offset(bytes int64) DeviceBuffer {
	return DeviceBuffer{ptr: unsafe.Add(b.ptr, bytes)}
}

func MemcpyH2DAsync(dst DeviceBuffer, src unsafe.Pointer, bytes int64, stream Stream) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.blastCudaMemcpyAsync(dst.ptr, src, C.ulonglong(bytes), C.BLAST_CUDA_MEMCPY_HOST_TO_DEVICE, stream.ptr))
}

func MemcpyD2DAsync(dst, src DeviceBuffer, bytes int64, stream Stream) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.blastCudaMemcpyAsync(dst.ptr, src.ptr, C.ulonglong(bytes), C.BLAST_CUDA_MEMCPY_DEVICE_TO_DEVICE, stream.ptr))
}

func MemsetAsync(dst DeviceBuffer, bytes int64, stream Stream) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.blastCudaMemsetAsync(dst.ptr, C.ulonglong(bytes), stream.ptr))
}

func MemcpyH2D(dst DeviceBuffer, src unsafe.Pointer, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.blastCudaMemcpy(dst.ptr, src, C.ulonglong(bytes), C.BLAST_CUDA_MEMCPY_HOST_TO_DEVICE))
}

func MemcpyD2H(dst unsafe.Pointer, src DeviceBuffer, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.blastCudaMemcpy(dst, src.ptr, C.ulonglong(bytes), C.BLAST_CUDA_MEMCPY_DEVICE_TO_HOST))
}

func NewBlasHandle(stream Stream) (BlasHandle, error) {
	var handle C.cublasHandle_t
	if err := cublasErr(C.blastCublasCreate(&handle)); err != nil {
		return BlasHandle{}, err
	}
	if err := cublasErr(C.blastCublasSetStream(handle, stream.ptr)); err != nil {
		_ = cublasErr(C.blastCublasDestroy(handle))
		return BlasHandle{}, err
	}
	return BlasHandle{ptr: handle}, nil
}

func (h BlasHandle) Destroy() error {
	if h.ptr == nil {
		return nil
	}
	return cublasErr(C.blastCublasDestroy(h.ptr))
}

type BlasOp int

const (
	BlasOpN BlasOp = 0 // CUBLAS_OP_N
	BlasOpT BlasOp = 1 // CUBLAS_OP_T
)

func Saxpy(h BlasHandle, n int, alpha float32, x DeviceBuffer, incx int, y DeviceBuffer, incy int) error {
	return cublasErr(C.blastSaxpy(h.ptr, C.int(n), C.float(alpha), x.ptr, C.int(incx), y.ptr, C.int(incy)))
}

func Daxpy(h BlasHandle, n int, alpha float64, x DeviceBuffer, incx int, y DeviceBuffer, incy int) error {
	return cublasErr(C.blastDaxpy(h.ptr, C.int(n), C.double(alpha), x.ptr, C.int(incx), y.ptr, C.int(incy)))
}

func Sscal(h BlasHandle, n int, alpha float32, x DeviceBuffer, incx int) error {
	return cublasErr(C.blastSscal(h.ptr, C.int(n), C.float(alpha), x.ptr, C.int(incx)))
}

func Dscal(h BlasHandle, n int, alpha float64, x DeviceBuffer, incx int) error {
	return cublasErr(C.blastDscal(h.ptr, C.int(n), C.double(alpha), x.ptr, C.int(incx)))
}

func Scopy(h BlasHandle, n int, x DeviceBuffer, incx int, y DeviceBuffer, incy int) error {
	return cublasErr(C.blastScopy(h.ptr, C.int(n), x.ptr, C.int(incx), y.ptr, C.int(incy)))
}

func Dcopy(h BlasHandle, n int, x DeviceBuffer, incx int, y DeviceBuffer, incy int) error {
	return cublasErr(C.blastDcopy(h.ptr, C.int(n), x.ptr, C.int(incx), y.ptr, C.int(incy)))
}

func Sswap(h BlasHandle, n int, x DeviceBuffer, incx int, y DeviceBuffer, incy int) error {
	return cublasErr(C.blastSswap(h.ptr, C.int(n), x.ptr, C.int(incx), y.ptr, C.int(incy)))
}

func Dswap(h BlasHandle, n int, x DeviceBuffer, incx int, y DeviceBuffer, incy int) error {
	return cublasErr(C.blastDswap(h.ptr, C.int(n), x.ptr, C.int(incx), y.ptr, C.int(incy)))
}

// Sdot blocks until the result is available on the host.
func Sdot(h BlasHandle, n int, x DeviceBuffer, incx int, y DeviceBuffer, incy int) (float32, error) {
	var out C.float
	err := cublasErr(C.blastSdot(h.ptr, C.int(n), x.ptr, C.int(incx), y.ptr, C.int(incy), &out))
	return float32(out), err
}

// Ddot blocks until the result is available on the host.
func Ddot(h BlasHandle, n int, x DeviceBuffer, incx int, y DeviceBuffer, incy int) (float64, error) {
	var out C.double
	err := cublasErr(C.blastDdot(h.ptr, C.int(n), x.ptr, C.int(incx), y.ptr, C.int(incy), &out))
	return float64(out), err
}

func Sgemv(h BlasHandle, trans BlasOp, m, n int, alpha float32, a DeviceBuffer, lda int, x DeviceBuffer, incx int, beta float32, y DeviceBuffer, incy int) error {
	return cublasErr(C.blastSgemv(h.ptr, C.int(trans), C.int(m), C.int(n), C.float(alpha), a.ptr, C.int(lda),
		x.ptr, C.int(incx), C.float(beta), y.ptr, C.int(incy)))
}

func Dgemv(h BlasHandle, trans BlasOp, m, n int, alpha float64, a DeviceBuffer, lda int, x DeviceBuffer, incx int, beta float64, y DeviceBuffer, incy int) error {
	return cublasErr(C.blastDgemv(h.ptr, C.int(trans), C.int(m), C.int(n), C.double(alpha), a.ptr, C.int(lda),
		x.ptr, C.int(incx), C.double(beta), y.ptr, C.int(incy)))
}

func cublasErr(code C.int) error {
	if code == 0 {
		return nil
	}
	return fmt.Errorf("cublas error %d", int(code))
}

func cudaErr(code C.int) error {
	if code == 0 {
		return nil
	}
	msg := C.GoString(C.blastCudaGetErrorString(C.cudaError_t(code)))
	return fmt.Errorf("cuda runtime error %d: %s", int(code), msg)
}
