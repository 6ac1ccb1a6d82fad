//go:build windows

package device

// Compute shader sources. Every launch binds the same five slots: source
// data, destination data, the sample offset table, flat per-sample
// coefficients and a uniform Params block. A shader maps its thread index
// to a sample with a binary search over the offset table, so one dispatch
// covers the whole batch regardless of how sample sizes vary.
//
// Byte and half storage is addressed as 32-bit words. Output bytes round
// with floor(v + 0.5) before clamping, which matches the host converter
// for the unsigned range; WGSL round() ties to even and would not.

const shaderParams = `
struct Params {
    size: u32,
    num_samples: u32,
    num_words: u32,
    num_pixels: u32,
}

@group(0) @binding(2) var<storage, read> offsets: array<u32>;
@group(0) @binding(3) var<storage, read> coeffs: array<f32>;
@group(0) @binding(4) var<uniform> params: Params;

fn find_sample(idx: u32) -> u32 {
    var lo: u32 = 0u;
    var hi: u32 = params.num_samples;
    while (lo + 1u < hi) {
        let mid = (lo + hi) / 2u;
        if (offsets[mid] <= idx) {
            lo = mid;
        } else {
            hi = mid;
        }
    }
    return lo;
}
`

const floatBindings = `
@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;
`

const wordBindings = `
@group(0) @binding(0) var<storage, read> src: array<u32>;
@group(0) @binding(1) var<storage, read_write> dst: array<u32>;
`

const loadByteFn = `
fn load_byte(i: u32) -> f32 {
    return f32((src[i / 4u] >> (8u * (i % 4u))) & 0xffu);
}
`

const loadHalfFn = `
fn load_half(i: u32) -> f32 {
    var px = unpack2x16float(src[i / 2u]);
    return px[i % 2u];
}
`

const multiplyAddFloatShader = floatBindings + shaderParams + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let idx = gid.x;
    if (idx >= params.size) {
        return;
    }
    let s = find_sample(idx);
    dst[idx] = src[idx] * coeffs[2u * s] + coeffs[2u * s + 1u];
}
`

const multiplyAddByteShader = wordBindings + shaderParams + loadByteFn + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let w = gid.x;
    if (w >= params.num_words) {
        return;
    }
    var word: u32 = 0u;
    for (var k: u32 = 0u; k < 4u; k = k + 1u) {
        let idx = 4u * w + k;
        if (idx < params.size) {
            let s = find_sample(idx);
            let v = load_byte(idx) * coeffs[2u * s] + coeffs[2u * s + 1u];
            let b = u32(clamp(floor(v + 0.5), 0.0, 255.0));
            word = word | (b << (8u * k));
        }
    }
    dst[w] = word;
}
`

const multiplyAddHalfShader = wordBindings + shaderParams + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let w = gid.x;
    if (w >= params.num_words) {
        return;
    }
    var px = unpack2x16float(src[w]);
    var outv = vec2<f32>(0.0, 0.0);
    for (var k: u32 = 0u; k < 2u; k = k + 1u) {
        let idx = 2u * w + k;
        if (idx < params.size) {
            let s = find_sample(idx);
            outv[k] = px[k] * coeffs[2u * s] + coeffs[2u * s + 1u];
        }
    }
    dst[w] = pack2x16float(outv);
}
`

const linearTransformFloatShader = floatBindings + shaderParams + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let p = gid.x;
    if (p >= params.num_pixels) {
        return;
    }
    let e = 3u * p;
    let s = find_sample(e);
    let base = 12u * s;
    let c0 = src[e];
    let c1 = src[e + 1u];
    let c2 = src[e + 2u];
    dst[e] = coeffs[base] * c0 + coeffs[base + 1u] * c1 + coeffs[base + 2u] * c2 + coeffs[base + 9u];
    dst[e + 1u] = coeffs[base + 3u] * c0 + coeffs[base + 4u] * c1 + coeffs[base + 5u] * c2 + coeffs[base + 10u];
    dst[e + 2u] = coeffs[base + 6u] * c0 + coeffs[base + 7u] * c1 + coeffs[base + 8u] * c2 + coeffs[base + 11u];
}
`

const linearTransformByteShader = wordBindings + shaderParams + loadByteFn + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let w = gid.x;
    if (w >= params.num_words) {
        return;
    }
    var word: u32 = 0u;
    for (var k: u32 = 0u; k < 4u; k = k + 1u) {
        let idx = 4u * w + k;
        if (idx < params.size) {
            let p = idx / 3u;
            let ch = idx % 3u;
            let e = 3u * p;
            let s = find_sample(e);
            let row = 12u * s + 3u * ch;
            let v = coeffs[row] * load_byte(e) + coeffs[row + 1u] * load_byte(e + 1u) +
                coeffs[row + 2u] * load_byte(e + 2u) + coeffs[12u * s + 9u + ch];
            let b = u32(clamp(floor(v + 0.5), 0.0, 255.0));
            word = word | (b << (8u * k));
        }
    }
    dst[w] = word;
}
`

const linearTransformHalfShader = wordBindings + shaderParams + loadHalfFn + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let w = gid.x;
    if (w >= params.num_words) {
        return;
    }
    var outv = vec2<f32>(0.0, 0.0);
    for (var k: u32 = 0u; k < 2u; k = k + 1u) {
        let idx = 2u * w + k;
        if (idx < params.size) {
            let p = idx / 3u;
            let ch = idx % 3u;
            let e = 3u * p;
            let s = find_sample(e);
            let row = 12u * s + 3u * ch;
            outv[k] = coeffs[row] * load_half(e) + coeffs[row + 1u] * load_half(e + 1u) +
                coeffs[row + 2u] * load_half(e + 2u) + coeffs[12u * s + 9u + ch];
        }
    }
    dst[w] = pack2x16float(outv);
}
`
