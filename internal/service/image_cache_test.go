package service

import (
	"image"
	"testing"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

func Test_NewImageCache(t *testing.T) {
	Convey("NewImageCache()", t, func() {
		Convey("configures things properly", func() {
			cache, err := NewImageCache(5, zerolog.Nop())

			So(err, ShouldBeNil)
			So(cache, ShouldNotBeNil)
			So(cache.Len(), ShouldEqual, 0)
		})

		Convey("rejects an invalid size", func() {
			cache, err := NewImageCache(0, zerolog.Nop())

			So(err, ShouldNotBeNil)
			So(cache, ShouldBeNil)
		})
	})
}

func Test_ImageCache(t *testing.T) {
	Convey("ImageCache", t, func() {
		cache, _ := NewImageCache(2, zerolog.Nop())
		first := image.NewRGBA(image.Rect(0, 0, 1, 1))
		second := image.NewRGBA(image.Rect(0, 0, 2, 2))
		third := image.NewRGBA(image.Rect(0, 0, 3, 3))

		Convey("returns what was added", func() {
			cache.Add("first", first)
			img, ok := cache.Get("first")

			So(ok, ShouldBeTrue)
			So(img, ShouldEqual, first)
		})

		Convey("evicts the least recently used image", func() {
			cache.Add("first", first)
			cache.Add("second", second)
			cache.Get("first")
			cache.Add("third", third)

			_, ok := cache.Get("second")
			So(ok, ShouldBeFalse)
			_, ok = cache.Get("first")
			So(ok, ShouldBeTrue)
			So(cache.Len(), ShouldEqual, 2)
		})

		Convey("removes and purges", func() {
			cache.Add("first", first)
			cache.Add("second", second)
			cache.Remove("first")
			So(cache.Len(), ShouldEqual, 1)

			cache.Purge()
			So(cache.Len(), ShouldEqual, 0)
		})

		Convey("ignores nil images", func() {
			cache.Add("nil", nil)
			So(cache.Len(), ShouldEqual, 0)
		})

		Convey("is safe to use when nil", func() {
			var empty *ImageCache
			empty.Add("first", first)
			_, ok := empty.Get("first")

			So(ok, ShouldBeFalse)
			So(empty.Len(), ShouldEqual, 0)
		})
	})
}
