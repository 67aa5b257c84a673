package fit

// Scalar SSD kernels. All three produce identical sums; the unrolled variants
// keep per-iteration accumulation in int32 (8 pixels * 3 * 255^2 fits easily)
// and only widen once per block.

func ssdNaive(pix []uint8, stride int, red, green, blue []uint8, width, height int) int64 {
	var sum int64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*stride + x*4
			j := y*width + x
			dr := int64(pix[i+0]) - int64(red[j])
			dg := int64(pix[i+1]) - int64(green[j])
			db := int64(pix[i+2]) - int64(blue[j])
			sum += dr*dr + dg*dg + db*db
		}
	}
	return sum
}

func ssdUnrolled4(pix []uint8, stride int, red, green, blue []uint8, width, height int) int64 {
	var sum int64
	unrollWidth := (width / 4) * 4

	for y := 0; y < height; y++ {
		row := pix[y*stride : y*stride+width*4]
		r := red[y*width : (y+1)*width]
		g := green[y*width : (y+1)*width]
		b := blue[y*width : (y+1)*width]

		x := 0
		for ; x < unrollWidth; x += 4 {
			i := x * 4
			var acc int32

			dr0 := int32(row[i+0]) - int32(r[x])
			dg0 := int32(row[i+1]) - int32(g[x])
			db0 := int32(row[i+2]) - int32(b[x])
			acc += dr0*dr0 + dg0*dg0 + db0*db0

			dr1 := int32(row[i+4]) - int32(r[x+1])
			dg1 := int32(row[i+5]) - int32(g[x+1])
			db1 := int32(row[i+6]) - int32(b[x+1])
			acc += dr1*dr1 + dg1*dg1 + db1*db1

			dr2 := int32(row[i+8]) - int32(r[x+2])
			dg2 := int32(row[i+9]) - int32(g[x+2])
			db2 := int32(row[i+10]) - int32(b[x+2])
			acc += dr2*dr2 + dg2*dg2 + db2*db2

			dr3 := int32(row[i+12]) - int32(r[x+3])
			dg3 := int32(row[i+13]) - int32(g[x+3])
			db3 := int32(row[i+14]) - int32(b[x+3])
			acc += dr3*dr3 + dg3*dg3 + db3*db3

			sum += int64(acc)
		}

		// Remainder (0-3 pixels)
		for ; x < width; x++ {
			i := x * 4
			dr := int32(row[i+0]) - int32(r[x])
			dg := int32(row[i+1]) - int32(g[x])
			db := int32(row[i+2]) - int32(b[x])
			sum += int64(dr*dr + dg*dg + db*db)
		}
	}
	return sum
}

func ssdUnrolled8(pix []uint8, stride int, red, green, blue []uint8, width, height int) int64 {
	var sum int64
	unrollWidth := (width / 8) * 8

	for y := 0; y < height; y++ {
		row := pix[y*stride : y*stride+width*4]
		r := red[y*width : (y+1)*width]
		g := green[y*width : (y+1)*width]
		b := blue[y*width : (y+1)*width]

		x := 0
		for ; x < unrollWidth; x += 8 {
			i := x * 4
			var acc int32

			dr0 := int32(row[i+0]) - int32(r[x])
			dg0 := int32(row[i+1]) - int32(g[x])
			db0 := int32(row[i+2]) - int32(b[x])
			acc += dr0*dr0 + dg0*dg0 + db0*db0

			dr1 := int32(row[i+4]) - int32(r[x+1])
			dg1 := int32(row[i+5]) - int32(g[x+1])
			db1 := int32(row[i+6]) - int32(b[x+1])
			acc += dr1*dr1 + dg1*dg1 + db1*db1

			dr2 := int32(row[i+8]) - int32(r[x+2])
			dg2 := int32(row[i+9]) - int32(g[x+2])
			db2 := int32(row[i+10]) - int32(b[x+2])
			acc += dr2*dr2 + dg2*dg2 + db2*db2

			dr3 := int32(row[i+12]) - int32(r[x+3])
			dg3 := int32(row[i+13]) - int32(g[x+3])
			db3 := int32(row[i+14]) - int32(b[x+3])
			acc += dr3*dr3 + dg3*dg3 + db3*db3

			dr4 := int32(row[i+16]) - int32(r[x+4])
			dg4 := int32(row[i+17]) - int32(g[x+4])
			db4 := int32(row[i+18]) - int32(b[x+4])
			acc += dr4*dr4 + dg4*dg4 + db4*db4

			dr5 := int32(row[i+20]) - int32(r[x+5])
			dg5 := int32(row[i+21]) - int32(g[x+5])
			db5 := int32(row[i+22]) - int32(b[x+5])
			acc += dr5*dr5 + dg5*dg5 + db5*db5

			dr6 := int32(row[i+24]) - int32(r[x+6])
			dg6 := int32(row[i+25]) - int32(g[x+6])
			db6 := int32(row[i+26]) - int32(b[x+6])
			acc += dr6*dr6 + dg6*dg6 + db6*db6

			dr7 := int32(row[i+28]) - int32(r[x+7])
			dg7 := int32(row[i+29]) - int32(g[x+7])
			db7 := int32(row[i+30]) - int32(b[x+7])
			acc += dr7*dr7 + dg7*dg7 + db7*db7

			sum += int64(acc)
		}

		// Remainder (0-7 pixels)
		for ; x < width; x++ {
			i := x * 4
			dr := int32(row[i+0]) - int32(r[x])
			dg := int32(row[i+1]) - int32(g[x])
			db := int32(row[i+2]) - int32(b[x])
			sum += int64(dr*dr + dg*dg + db*db)
		}
	}
	return sum
}
