package registry

import (
	"reflect"
	"testing"
)

func TestOrdered_PreservesInsertionOrder(t *testing.T) {
	o := New[string, int]()
	o.Set("b", 2)
	o.Set("a", 1)
	o.Set("c", 3)
	o.Set("b", 20)

	if got, want := o.Keys(), []string{"b", "a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	if got, want := o.Values(), []int{20, 1, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
}

func TestOrdered_DeleteWhileIteratingSnapshot(t *testing.T) {
	o := New[int, string]()
	for i := 1; i <= 4; i++ {
		o.Set(i, "v")
	}
	for _, k := range o.Keys() {
		if !o.Delete(k) {
			t.Fatalf("Delete(%d) = false", k)
		}
	}
	if o.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", o.Len())
	}
	if o.Delete(1) {
		t.Fatal("Delete on missing key returned true")
	}
}

func TestOrdered_ZeroValueUsable(t *testing.T) {
	var o Ordered[string, bool]
	o.Set("x", true)
	if v, ok := o.Get("x"); !ok || !v {
		t.Fatalf("Get(x) = %v, %v", v, ok)
	}
	if !o.Has("x") || o.Has("y") {
		t.Fatal("Has reported wrong membership")
	}
}

func TestOrdered_Find(t *testing.T) {
	o := New[int, string]()
	o.Set(1, "one")
	o.Set(2, "two")
	o.Set(3, "three")

	v, ok := o.Find(func(s string) bool { return len(s) == 3 && s != "one" })
	if !ok || v != "two" {
		t.Fatalf("Find = %q, %v, want two, true", v, ok)
	}
	if _, ok := o.Find(func(string) bool { return false }); ok {
		t.Fatal("Find matched nothing but returned ok")
	}
}
