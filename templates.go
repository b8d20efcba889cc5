package derivepoet

import "reflect"

// QualifyTemplateData re-creates the given template data value so that any
// Symbols and Modules in it (directly, or nested in structs, pointers,
// slices, arrays, maps and interfaces) render with the local names assigned
// by u. Modules not yet registered are registered.
//
// Unexported struct fields cannot be rewritten and are copied as-is.
func (u *Uses) QualifyTemplateData(data interface{}) interface{} {
	if data == nil {
		return nil
	}
	// make sure the entry point value has a type of interface{} (not data's
	// concrete type) so it can be replaced with a value of another type
	rv := reflect.ValueOf([]interface{}{data}).Index(0)
	newData, _ := qualifyTemplateData(u, rv)
	return newData.Interface()
}

func qualifyTemplateData(u *Uses, data reflect.Value) (reflect.Value, bool) {
	switch data.Kind() {
	case reflect.Interface:
		if data.IsNil() {
			return data, false
		}
		newElem, changed := qualifyTemplateData(u, data.Elem())
		if changed && newElem.Type().AssignableTo(data.Type()) {
			return newElem, true
		}
		return data, false

	case reflect.Struct:
		switch t := data.Interface().(type) {
		case Symbol:
			newSym := u.EnsureImported(t)
			if newSym != t {
				return reflect.ValueOf(newSym), true
			}
			return data, false
		case Module:
			prefix := u.RegisterUse(t.Path)
			newMod := Module{Path: t.Path, Name: prefix[:len(prefix)-2]}
			if newMod != t {
				return reflect.ValueOf(newMod), true
			}
			return data, false
		case Uses:
			// intentionally do not touch these
			return data, false
		}
		var newStruct reflect.Value
		for i := 0; i < data.NumField(); i++ {
			if !data.Type().Field(i).IsExported() {
				continue
			}
			newV, changedV := qualifyTemplateData(u, data.Field(i))
			if newStruct.IsValid() {
				newStruct.Field(i).Set(newV)
			} else if changedV {
				newStruct = reflect.New(data.Type()).Elem()
				newStruct.Set(data)
				newStruct.Field(i).Set(newV)
			}
		}
		if newStruct.IsValid() {
			return newStruct, true
		}

	case reflect.Ptr:
		if data.IsNil() {
			return data, false
		}
		if cb, ok := data.Interface().(*CodeBlock); ok {
			cb.qualify(u)
			return data, false
		}
		if newElem, changed := qualifyTemplateData(u, data.Elem()); changed {
			dest := reflect.New(newElem.Type())
			dest.Elem().Set(newElem)
			return dest, true
		}

	case reflect.Array, reflect.Slice:
		var newArray reflect.Value
		for i := 0; i < data.Len(); i++ {
			newV, changedV := qualifyTemplateData(u, data.Index(i))
			if newArray.IsValid() {
				newArray.Index(i).Set(newV)
			} else if changedV {
				if data.Kind() == reflect.Array {
					newArray = reflect.New(data.Type()).Elem()
				} else {
					newArray = reflect.MakeSlice(data.Type(), data.Len(), data.Len())
				}
				for j := 0; j < i; j++ {
					newArray.Index(j).Set(data.Index(j))
				}
				newArray.Index(i).Set(newV)
			}
		}
		if newArray.IsValid() {
			return newArray, true
		}

	case reflect.Map:
		var newMap reflect.Value
		seenKeys := make([]reflect.Value, 0, data.Len())
		for _, k := range data.MapKeys() {
			newV, changedV := qualifyTemplateData(u, data.MapIndex(k))
			if newMap.IsValid() {
				newMap.SetMapIndex(k, newV)
			} else if changedV {
				newMap = reflect.MakeMap(data.Type())
				for _, sk := range seenKeys {
					newMap.SetMapIndex(sk, data.MapIndex(sk))
				}
				newMap.SetMapIndex(k, newV)
				seenKeys = nil
			} else {
				seenKeys = append(seenKeys, k)
			}
		}
		if newMap.IsValid() {
			return newMap, true
		}
	}

	return data, false
}
