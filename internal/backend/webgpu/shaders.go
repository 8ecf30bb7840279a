//go:build webgpu

package webgpu

import (
	"fmt"
	"strings"

	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/device"
)

type argKind uint8

const (
	argInt argKind = iota
	argScalar
	argBuffer
)

type arg struct {
	name string
	kind argKind
}

func i32(name string) arg { return arg{name, argInt} }
func f32(name string) arg { return arg{name, argScalar} }
func buf(name string) arg { return arg{name, argBuffer} }

// kernelDef is one WGSL entry point. Integer and scalar arguments travel in
// a packed word buffer at binding 0; buffers follow at bindings 1..n in
// argument order.
type kernelDef struct {
	name  string
	args  []arg
	group string // tuning parameter holding the work-group size
	decls string
	body  string
}

var (
	argsXY        = []arg{i32("n"), buf("x"), buf("y")}
	argsXYStrided = []arg{i32("n"), buf("x"), i32("xoff"), i32("xinc"), buf("y"), i32("yoff"), i32("yinc")}
	argsGemv      = []arg{
		i32("m"), i32("n"), f32("alpha"), f32("beta"), i32("rotated"),
		buf("a"), i32("aoff"), i32("ld"),
		buf("x"), i32("xoff"), i32("xinc"),
		buf("y"), i32("yoff"), i32("yinc"),
		i32("conj"),
	}
)

// Fast bodies index (w*global + id)*VW + v with no bounds checks; generic
// bodies walk a grid-stride loop.
const (
	fastLoop = `
	let total = nwg.x * WGS;
	for (var w = 0u; w < WPT; w = w + 1u) {
		for (var v = 0u; v < VW; v = v + 1u) {
			let i = (w * total + gid.x) * VW + v;
			%s
		}
	}`
	stridedLoop = `
	let stride = i32(nwg.x * WGS);
	for (var i = i32(gid.x); i < n; i = i + stride) {
		%s
	}`
	treeReduce = `
	workgroupBarrier();
	for (var s = %[1]s / 2u; s > 0u; s = s >> 1u) {
		if (lid.x < s) {
			lm[lid.x] = lm[lid.x] + lm[lid.x + s];
		}
		workgroupBarrier();
	}`
	gemvRows = `
	let total = nwg.x * %[1]s;
	for (var w = 0u; w < %[2]s; w = w + 1u) {
		let i = i32(w * total + gid.x);
		%[3]s
		var acc = 0.0;
		for (var k = 0; k < n; k = k + 1) {
			%[4]s
			acc = acc + av * x[xoff + k * xinc];
		}
		let yi = yoff + i * yinc;
		y[yi] = alpha * acc + beta * y[yi];
	}`
	rowMajorRead    = `let av = a[aoff + i * ld + k];`
	colMajorRead    = `let av = a[aoff + k * ld + i];`
	flaggedReadExpr = `var av = a[aoff + k * ld + i];
			if (rotated != 0) { av = a[aoff + i * ld + k]; }`
)

var sources = map[string][]*kernelDef{
	device.RoutineAxpy: {
		{name: device.KernelXaxpyFast, group: "WGS",
			args: []arg{i32("n"), f32("alpha"), buf("x"), buf("y")},
			body: fmt.Sprintf(fastLoop, `y[i] = y[i] + alpha * x[i];`)},
		{name: device.KernelXaxpy, group: "WGS",
			args: []arg{i32("n"), f32("alpha"), buf("x"), i32("xoff"), i32("xinc"), buf("y"), i32("yoff"), i32("yinc")},
			body: fmt.Sprintf(stridedLoop, `let yi = i * yinc + yoff;
		y[yi] = y[yi] + alpha * x[i * xinc + xoff];`)},
	},
	device.RoutineScal: {
		{name: device.KernelXscalFast, group: "WGS",
			args: []arg{i32("n"), f32("alpha"), buf("x")},
			body: fmt.Sprintf(fastLoop, `x[i] = alpha * x[i];`)},
		{name: device.KernelXscal, group: "WGS",
			args: []arg{i32("n"), f32("alpha"), buf("x"), i32("xoff"), i32("xinc")},
			body: fmt.Sprintf(stridedLoop, `let xi = i * xinc + xoff;
		x[xi] = alpha * x[xi];`)},
	},
	device.RoutineCopy: {
		{name: device.KernelXcopyFast, group: "WGS", args: argsXY,
			body: fmt.Sprintf(fastLoop, `y[i] = x[i];`)},
		{name: device.KernelXcopy, group: "WGS", args: argsXYStrided,
			body: fmt.Sprintf(stridedLoop, `y[i * yinc + yoff] = x[i * xinc + xoff];`)},
	},
	device.RoutineSwap: {
		{name: device.KernelXswapFast, group: "WGS", args: argsXY,
			body: fmt.Sprintf(fastLoop, `let t = x[i];
			x[i] = y[i];
			y[i] = t;`)},
		{name: device.KernelXswap, group: "WGS", args: argsXYStrided,
			body: fmt.Sprintf(stridedLoop, `let xi = i * xinc + xoff;
		let yi = i * yinc + yoff;
		let t = x[xi];
		x[xi] = y[yi];
		y[yi] = t;`)},
	},
	device.RoutineDot: {
		{name: device.KernelXdot, group: "WGS1",
			args: []arg{
				i32("n"), buf("x"), i32("xoff"), i32("xinc"),
				buf("y"), i32("yoff"), i32("yinc"), buf("temp"), i32("conj"),
			},
			decls: `var<workgroup> lm : array<f32, WGS1>;`,
			body: `
	var acc = 0.0;
	let stride = i32(nwg.x * WGS1);
	for (var i = i32(gid.x); i < n; i = i + stride) {
		acc = acc + x[i * xinc + xoff] * y[i * yinc + yoff];
	}
	lm[lid.x] = acc;` + fmt.Sprintf(treeReduce, "WGS1") + `
	if (lid.x == 0u) {
		temp[wid.x] = lm[0];
	}`},
		{name: device.KernelXdotEpilogue, group: "WGS2",
			args:  []arg{buf("temp"), buf("result"), i32("dotoff")},
			decls: `var<workgroup> lm : array<f32, WGS2>;`,
			body: `
	lm[lid.x] = temp[lid.x] + temp[lid.x + WGS2];` + fmt.Sprintf(treeReduce, "WGS2") + `
	if (lid.x == 0u) {
		result[dotoff] = lm[0];
	}`},
	},
	device.RoutineGemv: {
		{name: device.KernelXgemv, group: "WGS1", args: argsGemv,
			body: fmt.Sprintf(gemvRows, "WGS1", "WPT1", "if (i >= m) { continue; }", flaggedReadExpr)},
		{name: device.KernelXgemvFast, group: "WGS2", args: argsGemv,
			body: fmt.Sprintf(gemvRows, "WGS2", "WPT2", "", colMajorRead)},
		{name: device.KernelXgemvFastRot, group: "WGS3", args: argsGemv,
			body: fmt.Sprintf(gemvRows, "WGS3", "WPT3", "", rowMajorRead)},
	},
}

// source renders def as a complete WGSL module with params as constants.
func (def *kernelDef) source(params tuning.Params) (string, error) {
	if err := params.Require(def.group); err != nil {
		return "", fmt.Errorf("%s: %w", def.name, err)
	}
	var b strings.Builder
	b.WriteString("@group(0) @binding(0) var<storage, read> words : array<u32>;\n")
	binding := 1
	for _, a := range def.args {
		if a.kind == argBuffer {
			fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, read_write> %s : array<f32>;\n", binding, a.name)
			binding++
		}
	}
	for _, name := range params.Names() {
		fmt.Fprintf(&b, "const %s : u32 = %du;\n", name, params.Get(name))
	}
	fmt.Fprintf(&b, "const GROUP_SIZE : u32 = %du;\n", params.Get(def.group))
	if def.decls != "" {
		b.WriteString(def.decls)
		b.WriteByte('\n')
	}
	b.WriteString(`
@compute @workgroup_size(GROUP_SIZE)
fn main(@builtin(global_invocation_id) gid : vec3<u32>,
	@builtin(local_invocation_id) lid : vec3<u32>,
	@builtin(workgroup_id) wid : vec3<u32>,
	@builtin(num_workgroups) nwg : vec3<u32>) {
`)
	word := 0
	for _, a := range def.args {
		switch a.kind {
		case argInt:
			fmt.Fprintf(&b, "\tlet %s = bitcast<i32>(words[%d]);\n", a.name, word)
			word++
		case argScalar:
			fmt.Fprintf(&b, "\tlet %s = bitcast<f32>(words[%d]);\n", a.name, word)
			word++
		}
	}
	b.WriteString(def.body)
	b.WriteString("\n}\n")
	return b.String(), nil
}
