// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"io"
)

// cmdLegal prints license and attribution information for the program and
// the open source libraries its binary links.
func cmdLegal(w io.Writer) {
	fmt.Fprintf(w, `Contbin is Copyright (c) 2020 Markus L. Noga.

This program is free software: you can redistribute it and/or modify it
under the terms of the GNU General Public License as published by the Free
Software Foundation, either version 3 of the License, or (at your option)
any later version.

This program is distributed in the hope that it will be useful, but
WITHOUT ANY WARRANTY; without even the implied warranty of MERCHANTABILITY
or FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License
for more details, or refer to https://www.gnu.org/licenses/gpl-3.0.en.html.

The binary version of this program uses several open source libraries and
components, which come with their own licensing terms:

| Library                                  | License      |
|------------------------------------------|--------------|
| github.com/gin-gonic/gin                 | MIT License  |
| github.com/klauspost/cpuid               | MIT License  |
| github.com/lucasb-eyer/go-colorful       | MIT License  |
| github.com/mattn/go-isatty               | MIT License  |
| github.com/pbnjay/memory                 | BSD 3-Clause |
| github.com/valyala/fastrand              | MIT License  |
| golang.org/x/image                       | BSD 3-Clause |
| golang.org/x/sys                         | BSD 3-Clause |
| gonum.org/v1/gonum                       | BSD 3-Clause |

Refer to each project's repository for the full license text.
`)
}
